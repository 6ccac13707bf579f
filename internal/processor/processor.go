// Package processor provides the concrete pipeline stages a channel can
// negotiate: authenticated encryption, compression and obfuscation.
package processor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/1ureka/cmdlink/internal/pipeline"
)

// ErrNotNegotiated is returned by Forward or Backward before
// FinishNegotiate succeeded.
var ErrNotNegotiated = errors.New("processor: not negotiated")

// Short names accepted by ByName alongside the full ids.
var aliases = map[string]string{
	"seal":      SealID,
	"compress":  CompressID,
	"obfuscate": ObfuscateID,
}

// ByName builds fresh processor instances in the given order. Each name is
// either a full id such as "compress/zstd" or its short form "compress".
func ByName(names ...string) ([]pipeline.Processor, error) {
	procs := make([]pipeline.Processor, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if id, ok := aliases[name]; ok {
			name = id
		}

		var (
			p   pipeline.Processor
			err error
		)
		switch name {
		case SealID:
			p, err = NewSeal()
		case CompressID:
			p, err = NewCompress()
		case ObfuscateID:
			p, err = NewObfuscate()
		default:
			return nil, fmt.Errorf("processor: unknown processor %q", name)
		}
		if err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// Names lists the short names ByName understands.
func Names() []string {
	return []string{"seal", "compress", "obfuscate"}
}
