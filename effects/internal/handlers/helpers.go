package handlers

import (
	"github.com/cespare/xxhash/v2"

	effectmodel "github.com/on-the-ground/effect_ive_tracing/effects/internal/model"
)

func hash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// getIndexByHash maps a payload onto one of numChs workers.
// Payloads sharing a partition key always land on the same worker.
func getIndexByHash(payload effectmodel.Partitionable, numChs int) int {
	switch numChs {
	case 0:
		panic("number of channels cannot be 0")
	case 1:
		return 0
	default:
		return int(hash(payload.PartitionKey()) % uint64(numChs))
	}
}
