package backends

import (
	"context"
	"fmt"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/config"
)

// NOTE: 7z/rar would slot in here as further formats once a reader library is
// picked for them.

type BuiltInFormat = string

const (
	ZipFormat      BuiltInFormat = "zip"
	SplitZipFormat BuiltInFormat = "zip.001"
	CPIOFormat     BuiltInFormat = "cpio"
	ZstdFormat     BuiltInFormat = "zst"
	GzipFormat     BuiltInFormat = "gz"
	LZ4Format      BuiltInFormat = "lz4"
)

// AllFormats lists every built-in archive format.
var AllFormats = []BuiltInFormat{ZipFormat, SplitZipFormat, CPIOFormat, ZstdFormat, GzipFormat, LZ4Format}

// RegisterBuiltins registers all built-in formats by default, or only the
// specific ones if keys are provided.
func RegisterBuiltins(r *Registry, formats ...BuiltInFormat) error {
	if len(formats) == 0 {
		formats = AllFormats
	}

	for _, key := range formats {
		switch key {
		case ZipFormat:
			r.Register(key, func(ctx context.Context, file seamfs.Entity, opts Options) (seamfs.Backend, error) {
				return asBackend(OpenZip(ctx, file, opts))
			})
		case SplitZipFormat:
			r.Register(key, func(ctx context.Context, file seamfs.Entity, opts Options) (seamfs.Backend, error) {
				return asBackend(OpenSplitZip(ctx, file, opts))
			})
		case CPIOFormat:
			r.Register(key, func(ctx context.Context, file seamfs.Entity, opts Options) (seamfs.Backend, error) {
				return asBackend(OpenCPIO(ctx, file, opts))
			})
		case ZstdFormat:
			r.Register(key, compressedFactory(ZstdCodec))
		case GzipFormat:
			r.Register(key, compressedFactory(GzipCodec))
		case LZ4Format:
			r.Register(key, compressedFactory(LZ4Codec))
		default:
			return fmt.Errorf("unknown archive format %q", key)
		}
	}
	return nil
}

// NewDefaultRegistry builds a registry holding the formats enabled in cfg.
func NewDefaultRegistry(cfg *config.Config) (*Registry, error) {
	r := NewRegistry(OptionsFromConfig(cfg))
	if err := RegisterBuiltins(r, cfg.ArchiveFormats...); err != nil {
		return nil, err
	}
	return r, nil
}

func compressedFactory(codec Codec) Factory {
	return func(ctx context.Context, file seamfs.Entity, opts Options) (seamfs.Backend, error) {
		return asBackend(OpenCompressed(ctx, file, codec, opts))
	}
}

// asBackend keeps a nil concrete pointer from turning into a non-nil interface.
func asBackend[B seamfs.Backend](b B, err error) (seamfs.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
