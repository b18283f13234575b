package utils

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"bitbucket.org/mmdatafocus/ptw_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
)

// GenerateUniqueFilename names uploaded permit attachments inside their GCS
// prefix; the nanosecond timestamp plus a random suffix keeps two uploads in
// the same request burst from colliding.
func GenerateUniqueFilename() string {

	timestamp := time.Now().UnixNano()

	random := rand.Intn(1000)

	uniqueFilename := fmt.Sprintf("%d_%d", timestamp, random)

	return uniqueFilename
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

// ImportLock serializes destructive imports. The lock is held for the
// lifetime of the returned release func; correctness of replace mode still
// rests on its transaction, the lock only prevents interleaved reloads.
func ImportLock(ctx context.Context, name string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", name, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("ImportLock:%s", name)
	lock, err := locker.Obtain(ctx, lockKey, 60*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain import lock", name, err)
		return nil, errors.New("another import is in progress")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining import lock", name, err)
		return nil, err
	}
	return func() {
		_ = lock.Release(ctx)
	}, nil
}
