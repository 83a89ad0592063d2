package config

import "github.com/dshills/vlist/internal/config/watcher"

// Watch returns a watcher that reloads the configuration at path after
// every change and passes the result to apply. Call Run on the returned
// watcher to start processing events.
func Watch(path string, apply func(Config, error), opts ...watcher.Option) (*watcher.Watcher, error) {
	return watcher.New(path, func(p string) {
		apply(Load(p))
	}, opts...)
}
