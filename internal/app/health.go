package app

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"live-quiz-service/internal/domain"
)

const connectionTestKey = "connectionTest"

// CheckConnection writes a probe value to the store and reads it back.
func CheckConnection(ctx context.Context, store SharedStore) error {
	probe := []byte(strconv.FormatInt(time.Now().UnixMilli(), 10))
	if err := store.Set(ctx, connectionTestKey, probe); err != nil {
		return err
	}
	got, err := store.Get(ctx, connectionTestKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, probe) {
		return fmt.Errorf("%w: probe mismatch", domain.ErrStoreUnavailable)
	}
	return nil
}
