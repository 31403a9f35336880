package services

import "errors"

// Общие ошибки сервисного слоя, используемые в маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	ErrMatchNotFound   = errors.New("match not found")
	ErrSessionNotFound = errors.New("no open console session for this match")
	ErrRosterNotFound  = errors.New("roster not found for team and edition")

	// Консоль
	ErrSessionAlreadyOpen  = errors.New("console session is already open for this match")
	ErrMatchAlreadyStarted = errors.New("match has already been started on another console")

	// Отчёты
	ErrReportNotReady    = errors.New("match report is available only after the match is finished")
	ErrExportUnavailable = errors.New("report export storage is not configured")
)
