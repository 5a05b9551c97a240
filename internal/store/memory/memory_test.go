package memory_test

import (
	"testing"

	"ragqa/internal/store/memory"
	"ragqa/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return memory.NewStore()
	})
}
