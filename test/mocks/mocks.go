// test/mocks/mocks.go

// Package mocks contains generated mocks for the application's interfaces.
// To regenerate mocks, run `go generate ./test/mocks` from the root directory.
package mocks

//go:generate mockgen -source=../../internal/core/ports/kv.go -destination=kv_store_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/cache.go -destination=cache_repository_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/backend.go -destination=backend_client_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/queue.go -destination=queue_mock.go -package=mocks
