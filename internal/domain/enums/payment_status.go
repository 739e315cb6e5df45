package enums

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodStars   PaymentMethod = "stars"
	PaymentMethodTON     PaymentMethod = "ton"
	PaymentMethodTribute PaymentMethod = "tribute"
)

func (m PaymentMethod) Currency() string {
	switch m {
	case PaymentMethodTON:
		return "TON"
	case PaymentMethodStars:
		return "XTR"
	default:
		return "RUB"
	}
}
