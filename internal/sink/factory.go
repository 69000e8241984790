package sink

import (
	"fmt"

	"wheelwatch/internal/config"
	"wheelwatch/internal/inspect"
)

// NewSinkFromConfig creates a Sink implementation based on the export config type.
func NewSinkFromConfig(cfg config.ExportConfig) (inspect.Sink, error) {
	switch cfg.Type {
	case "memory":
		return NewMemorySink("memory"), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 sink requires s3_bucket to be set")
		}
		return NewS3SinkFromConfig(cfg)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem sink requires fs_root to be set")
		}
		return NewFileSystemSink(cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unknown export type: %s", cfg.Type)
	}
}
