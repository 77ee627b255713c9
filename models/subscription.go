package models

type Subscription string

const (
	Free    Subscription = "free" // basic
	Trial   Subscription = "trial"
	Pro     Subscription = "pro"
	ProPlus Subscription = "pro_plus" // pro +
)

func (l *Subscription) Scan(value interface{}) error {
	*l = Subscription(value.(string))
	return nil
}

func (l Subscription) Value() (string, error) {
	return string(l), nil
}

// IsFreeTier reports whether the account is on the metered free plan. A
// missing subscription value means free.
func IsFreeTier(subscription *string) bool {
	return subscription == nil || *subscription == string(Free)
}
