package fs

import "os"

type Options struct {
	FileMode os.FileMode
	DirMode  os.FileMode
}

type OptionFunc func(opts *Options)

func WithFileMode(mode os.FileMode) OptionFunc {
	return func(opts *Options) {
		opts.FileMode = mode
	}
}

func WithDirMode(mode os.FileMode) OptionFunc {
	return func(opts *Options) {
		opts.DirMode = mode
	}
}

var defaultOpts = Options{
	FileMode: 0o644,
	DirMode:  0o755,
}
