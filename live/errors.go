package live

import (
	"fmt"

	"github.com/ligasur/matchday/models"
)

// Типизированные ошибки консоли. Обработчики сопоставляют их с HTTP-статусами
// через errors.As; реконсилиатор повторяет только TransportError.

// ValidationError — некорректный или противоречивый ввод. Не повторяется,
// в сеть не уходит.
type ValidationError struct {
	Reason   string
	PlayerID int
}

func (e *ValidationError) Error() string {
	if e.PlayerID != 0 {
		return fmt.Sprintf("validation failed for player %d: %s", e.PlayerID, e.Reason)
	}
	return "validation failed: " + e.Reason
}

// ConflictError — дисциплинарный конфликт или конкурентная операция над
// той же целью.
type ConflictError struct {
	Reason   string
	PlayerID int
}

func (e *ConflictError) Error() string {
	if e.PlayerID != 0 {
		return fmt.Sprintf("conflict for player %d: %s", e.PlayerID, e.Reason)
	}
	return "conflict: " + e.Reason
}

// StateError — мутация, несовместимая с текущей фазой часов. Если оператор
// видит её при нормальном сценарии — это баг интерфейса, не данных.
type StateError struct {
	Phase  models.Phase
	Action string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("action %q is not allowed in phase %s", e.Action, e.Phase)
}

// PolicyError — исчерпана квота eventual-игрока. Несёт квоту и текущее
// использование, чтобы интерфейс мог объяснить отказ.
type PolicyError struct {
	PlayerID  int
	TeamID    int
	EditionID int
	Quota     int
	Used      int
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("eventual player %d exhausted quota for team %d in edition %d: used %d of %d",
		e.PlayerID, e.TeamID, e.EditionID, e.Used, e.Quota)
}

// TransportError — сбой сети или бэкенда. Единственный класс, который
// реконсилиатор повторяет с экспоненциальной задержкой.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
