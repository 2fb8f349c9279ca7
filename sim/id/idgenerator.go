// Package id generates identifiers for events and messages.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

var (
	generatorMutex        sync.Mutex
	generatorInstantiated bool
	generator             IDGenerator
)

// IDGenerator can generate IDs
type IDGenerator interface {
	// Generate an ID
	Generate() string
}

// NewIDGenerator returns a sequential ID generator. The IDs it generates are
// deterministic, which keeps runs with identical seeds reproducible.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// UseSequentialIDGenerator configures the package generator to generate IDs
// in sequence.
func UseSequentialIDGenerator() {
	generatorMutex.Lock()
	defer generatorMutex.Unlock()

	mustNotBeInstantiated()

	generator = &sequentialIDGenerator{}
	generatorInstantiated = true
}

// UseParallelIDGenerator configures the package generator to generate
// globally unique IDs. The IDs generated will not be deterministic anymore.
func UseParallelIDGenerator() {
	generatorMutex.Lock()
	defer generatorMutex.Unlock()

	mustNotBeInstantiated()

	generator = parallelIDGenerator{}
	generatorInstantiated = true
}

func mustNotBeInstantiated() {
	if generatorInstantiated {
		panic("cannot change id generator type after using it")
	}
}

// Generate returns a new ID from the package generator. The sequential
// generator is used if none is configured.
func Generate() string {
	generatorMutex.Lock()
	if !generatorInstantiated {
		generator = &sequentialIDGenerator{}
		generatorInstantiated = true
	}
	g := generator
	generatorMutex.Unlock()

	return g.Generate()
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)

	return strconv.FormatUint(idNumber, 10)
}

type parallelIDGenerator struct{}

func (g parallelIDGenerator) Generate() string {
	return xid.New().String()
}
