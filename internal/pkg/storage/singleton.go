package storage

import (
	"fmt"
	"sync"
)

var (
	globalClient *Client
	globalErr    error
	clientOnce   sync.Once
)

// GetClient returns the shared document storage client, initializing it on
// first use from the environment.
func GetClient() (*Client, error) {
	clientOnce.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			globalErr = err
			return
		}
		if !cfg.IsEnabled() {
			globalErr = fmt.Errorf("S3 storage is disabled")
			return
		}
		globalClient, globalErr = NewClient(cfg)
	})
	return globalClient, globalErr
}
