package distributor

import (
	"errors"
	"fmt"
)

var (
	// ErrFatal 需要终止进程的错误
	ErrFatal = errors.New("fatal")

	ErrRewardPercent  = errors.New("reward percents sum exceeds 100")
	ErrTxTooLarge     = errors.New("single item transaction exceeds size limit")
	ErrNotValidated   = errors.New("distributor not validated")
	errNoInstructions = errors.New("no instructions")
)

func fatalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFatal, fmt.Sprintf(format, args...))
}

// IsFatal 判断错误是否需要终止进程
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
