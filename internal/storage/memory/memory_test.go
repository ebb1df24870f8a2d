package memory

import (
	"testing"

	"conti/internal/storage"
	"conti/internal/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}
