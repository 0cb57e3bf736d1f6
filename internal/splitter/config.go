// Package splitter implements the spec's size-bounded hierarchical
// chunkers (§4.5.1–§4.5.3): a semantic-markdown splitter, a source-code
// boundary splitter, a plain-text line splitter, and the greedy merger
// that wraps the first and third.
package splitter

// Config bounds chunk sizes across every splitter. Preferred is the soft
// target the greedy merger aims for; Max is the hard ceiling nothing may
// exceed (P5: "no emitted chunk exceeds maxChunkSize").
type Config struct {
	Preferred int
	Max       int
}

// DefaultConfig mirrors the sizes the teacher's own chunking call sites
// use for embedding-sized windows: a few hundred tokens' worth of text.
func DefaultConfig() Config {
	return Config{Preferred: 1500, Max: 2500}
}

func (c Config) withDefaults() Config {
	if c.Preferred <= 0 {
		c.Preferred = 1500
	}
	if c.Max <= 0 {
		c.Max = 2500
	}
	if c.Max < c.Preferred {
		c.Preferred = c.Max
	}
	return c
}
