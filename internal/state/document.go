// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package state

import "context"

// ReadDocument decodes the YAML file at path into out and reports whether
// the file existed. Components use it for the files in their data directory.
func ReadDocument(path string, out any) (bool, error) {
	return readYAML(path, out)
}

// WriteDocument atomically replaces the YAML file at path with doc, retrying
// failed writes like FileStore.Flush.
func WriteDocument(ctx context.Context, path string, doc any, opts ...Option) error {
	return writeYAML(ctx, path, doc, newOptions(opts))
}
