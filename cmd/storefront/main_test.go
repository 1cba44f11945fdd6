package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"example.com/bazaar-store/internal/logging"
)

type step struct {
	name  string
	order *[]string
	err   error
}

func (s step) Close() error {
	*s.order = append(*s.order, s.name)
	return s.err
}

func (s step) Stop() { *s.order = append(*s.order, s.name) }

func TestDrainStopsWorkerBeforeClosingMirror(t *testing.T) {
	var order []string
	drain(logging.Discard(),
		step{name: "dispatcher", order: &order},
		step{name: "worker", order: &order},
		step{name: "mirror", order: &order, err: errors.New("already closed")},
	)
	assert.Equal(t, []string{"dispatcher", "worker", "mirror"}, order)
}

func TestDrainWithoutWorker(t *testing.T) {
	var order []string
	drain(logging.Discard(), struct{}{}, nil, step{name: "mirror", order: &order})
	assert.Equal(t, []string{"mirror"}, order)
}
