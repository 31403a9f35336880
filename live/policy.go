package live

import "context"

// UsageSource сообщает, в скольких матчах эдишена eventual-игрок уже выходил
// за команду. Счётчик всегда выводится из журналов, отдельного счётчика нет —
// иначе он разъезжается с фактическими инцидентами.
type UsageSource interface {
	EventualUsage(ctx context.Context, playerID, teamID, editionID int) (int, error)
}

// EventualPolicy решает, может ли незаявленный игрок фигурировать в
// инциденте. Опрашивается синхронно до Ledger.Append, так что отказ по квоте
// никогда не доходит до сети.
type EventualPolicy struct {
	quota int
	usage UsageSource
}

func NewEventualPolicy(quota int, usage UsageSource) *EventualPolicy {
	return &EventualPolicy{quota: quota, usage: usage}
}

func (p *EventualPolicy) Quota() int { return p.quota }

// CanUse возвращает nil для заявленных игроков; для eventual-игрока сверяет
// текущее использование с квотой и при исчерпании возвращает PolicyError с
// числами для интерфейса.
func (p *EventualPolicy) CanUse(ctx context.Context, playerID, teamID, editionID int, eventual bool) error {
	if !eventual {
		return nil
	}
	used, err := p.usage.EventualUsage(ctx, playerID, teamID, editionID)
	if err != nil {
		return &TransportError{Op: "eventual usage lookup", Err: err}
	}
	if used >= p.quota {
		return &PolicyError{
			PlayerID:  playerID,
			TeamID:    teamID,
			EditionID: editionID,
			Quota:     p.quota,
			Used:      used,
		}
	}
	return nil
}
