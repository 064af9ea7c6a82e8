package models

const (
	// ReferencePrefix starts every booking reference.
	ReferencePrefix = "AV/"

	// ReferenceDigits is the number of random decimal digits after the prefix.
	ReferenceDigits = 6

	// ReceiptTimeLayout formats booking timestamps for members and gym staff.
	ReceiptTimeLayout = "02-Jan-2006 03:04:05 PM"

	// DefaultTimezone is used when app.timezone is not configured.
	DefaultTimezone = "Africa/Lagos"
)

const (
	// DefaultAttemptTTL время жизни попытки бронирования в Redis
	DefaultAttemptTTL = 2 * 60 * 60 // 2 часа в секундах

	// DefaultAttemptRateLimit количество новых попыток на участника в окне
	DefaultAttemptRateLimit = 10

	// DefaultAttemptRateWindow окно ограничения частоты попыток
	DefaultAttemptRateWindow = 60 * 60 // 1 час в секундах

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128

	// DefaultConfirmLockTTL время удержания блокировки подтверждения
	DefaultConfirmLockTTL = 60 // секунд
)
