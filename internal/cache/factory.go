package cache

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-pagecms/internal/runtimeconfig"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	"github.com/uptrace/bun"
)

// Dependencies are the collaborators backends may need.
type Dependencies struct {
	// DB backs the document backend.
	DB     bun.IDB
	URLs   interfaces.URLGenerator
	Runner CommandRunner
}

// NewFromConfig builds every backend the config references and a router
// over them. A disabled cache routes every block type to noop.
func NewFromConfig(cfg runtimeconfig.CacheConfig, deps Dependencies, opts ...Option) (*Router, error) {
	noop := NewNoopBackend()
	if !cfg.Enabled {
		return NewRouter(runtimeconfig.BackendNoop, map[string]Backend{runtimeconfig.BackendNoop: noop}, nil)
	}
	opts = append([]Option{WithTimeout(cfg.Timeout)}, opts...)
	signer := NewSigner(cfg.Token)
	urls := deps.URLs
	if urls == nil {
		urls = PrefixURLs{Prefix: "/_cache"}
	}

	backends := map[string]Backend{runtimeconfig.BackendNoop: noop}
	for _, code := range cfg.Backends() {
		code = strings.ToLower(code)
		if _, exists := backends[code]; exists {
			continue
		}
		var (
			backend Backend
			err     error
		)
		switch code {
		case runtimeconfig.BackendMemory:
			backend = NewMemoryBackend(cfg.Memory.Peers, cfg.Token, opts...)
		case runtimeconfig.BackendRedis:
			backend, err = NewRedisBackendFromURL(cfg.Redis.URL, cfg.Redis.Prefix, cfg.Redis.Contextual, opts...)
		case runtimeconfig.BackendDocument:
			if deps.DB == nil {
				return nil, fmt.Errorf("cache document backend: database not configured")
			}
			backend = NewDocumentBackend(deps.DB, opts...)
		case runtimeconfig.BackendDisk:
			backend, err = OpenDiskBackend(cfg.Disk.Path, opts...)
		case runtimeconfig.BackendESI:
			backend = NewESIBackend(EdgeConfig{
				URLs: urls, Signer: signer, Runner: deps.Runner,
				Servers: cfg.ESI.Servers, PurgeCommand: cfg.ESI.PurgeCommand,
			}, opts...)
		case runtimeconfig.BackendSSI:
			backend = NewSSIBackend(EdgeConfig{
				URLs: urls, Signer: signer, Runner: deps.Runner,
				Servers: cfg.SSI.Servers, PurgeCommand: cfg.SSI.PurgeCommand,
			}, opts...)
		case runtimeconfig.BackendJS:
			backend = NewJSBackend(cfg.JS.Sync, urls, signer, opts...)
		default:
			return nil, fmt.Errorf("%w: %s", ErrBackendUnknown, code)
		}
		if err != nil {
			return nil, err
		}
		backends[code] = backend
	}

	byType := make(map[string]string, len(cfg.BlockBackends))
	for blockType, code := range cfg.BlockBackends {
		byType[blockType] = strings.ToLower(code)
	}
	return NewRouter(strings.ToLower(cfg.Default), backends, byType)
}
