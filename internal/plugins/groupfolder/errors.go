package groupfolder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrGroupCycle is matched by GroupCycleError.
	ErrGroupCycle = errors.New("group cycle")

	// ErrGroupNotFound is returned for names not present in the folder.
	ErrGroupNotFound = errors.New("group not found")
)

// GroupCycleError reports the id that reappeared and the descent path that
// led back to it.
type GroupCycleError struct {
	ID   string
	Path []string
}

func (e *GroupCycleError) Error() string {
	return fmt.Sprintf("group cycle: %q reached again via %s", e.ID, strings.Join(e.Path, " -> "))
}

func (e *GroupCycleError) Is(target error) bool {
	return target == ErrGroupCycle
}
