package binser

import (
	"encoding/binary"

	"go.uber.org/zap"
)

// DefaultBufferIncrements is the extra capacity reserved before each field
// header when metadata is written.
const DefaultBufferIncrements = 128

type config struct {
	putMeta       bool
	simpleStrings bool
	order         binary.ByteOrder
	logger        *zap.Logger
	registry      *Registry
	increments    int
	producers     []string
	maxStreamSize int64
}

// Option configures a Wire, a Serializer or the stream helpers.
type Option func(*config)

func newConfig(opts []Option) *config {
	c := &config{
		putMeta:    true,
		order:      Order,
		increments: DefaultBufferIncrements,
		producers:  []string{ProducerName},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.L()
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	return c
}

// WithFieldMetaData toggles writing and reading the optional unit,
// description, direction and groups of every field header. Defaults to true.
// Reader and writer must agree on the setting.
func WithFieldMetaData(enable bool) Option {
	return func(c *config) { c.putMeta = enable }
}

// WithSimpleStringEncoding writes string payloads with one byte per character
// instead of UTF-8.
func WithSimpleStringEncoding(enable bool) Option {
	return func(c *config) { c.simpleStrings = enable }
}

func WithByteOrder(order binary.ByteOrder) Option {
	return func(c *config) {
		if order != nil {
			c.order = order
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithRegistry replaces the process wide default codec registry.
func WithRegistry(r *Registry) Option {
	return func(c *config) { c.registry = r }
}

func WithBufferIncrements(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.increments = n
		}
	}
}

// WithAcceptedProducers lists the producer names CheckHeaderInfo accepts in
// addition to our own.
func WithAcceptedProducers(producers ...string) Option {
	return func(c *config) { c.producers = append(c.producers, producers...) }
}

// WithMaxStreamSize bounds the number of bytes Decode buffers. Zero means unbounded.
func WithMaxStreamSize(n int64) Option {
	return func(c *config) { c.maxStreamSize = n }
}
