package core

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DelaySource produces the inter-arrival delays used during admission. It is
// an interface so tests can substitute a fixed sequence and so a run with the
// same seed reproduces the same admission schedule.
type DelaySource interface {
	Next() float64
}

// arrival delay bounds, in simulated seconds. The admitting actor sleeps the
// drawn delay between consecutive requests, modeling an open arrival process.
const (
	minArrivalDelay = 0.1
	maxArrivalDelay = 1.5
)

// uniformDelay draws delays from Uniform[minArrivalDelay, maxArrivalDelay)
// with a seeded source.
type uniformDelay struct {
	dist distuv.Uniform
}

// NewUniformDelay returns the default delay source seeded with the given
// value.
func NewUniformDelay(seed uint64) DelaySource {
	return &uniformDelay{
		dist: distuv.Uniform{
			Min: minArrivalDelay,
			Max: maxArrivalDelay,
			Src: rand.NewSource(seed),
		},
	}
}

func (u *uniformDelay) Next() float64 {
	return u.dist.Rand()
}

// FixedDelays replays a predetermined delay sequence, cycling when exhausted.
// Intended for tests.
type FixedDelays struct {
	Delays []float64
	i      int
}

func (f *FixedDelays) Next() float64 {
	if len(f.Delays) == 0 {
		return 0
	}
	d := f.Delays[f.i%len(f.Delays)]
	f.i++
	return d
}
