package memory

import (
	"fmt"

	"edgesql/pkg/dberrors"
)

func budgetExceededError(requested, used, limit uint64) error {
	return dberrors.New(dberrors.Budget, "MEMORY_BUDGET_EXCEEDED",
		fmt.Sprintf("requested %d bytes, %d of %d already used", requested, used, limit))
}
