package dbutil

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/shopspring/decimal"
)

// SerializeEvent encodes the event as a flat JSON object carrying the Id,
// Type and Timestamp of the vault event at the top level.
func SerializeEvent(event domain.Event) ([]byte, error) {
	return json.Marshal(event)
}

func DeserializeEvent(buf []byte) (domain.Event, error) {
	var eventType struct {
		Type domain.EventType
	}

	if err := json.Unmarshal(buf, &eventType); err != nil {
		return nil, err
	}

	switch eventType.Type {
	case domain.EventTypeVaultCreated:
		var event = domain.VaultCreated{}
		if err := json.Unmarshal(buf, &event); err != nil {
			return nil, err
		}
		return event, nil
	case domain.EventTypeCreatorDeposited:
		var event = domain.CreatorDeposited{}
		if err := json.Unmarshal(buf, &event); err != nil {
			return nil, err
		}
		return event, nil
	case domain.EventTypeInvestorDeposited:
		var event = domain.InvestorDeposited{}
		if err := json.Unmarshal(buf, &event); err != nil {
			return nil, err
		}
		return event, nil
	case domain.EventTypeWithdrawnNoMatch:
		var event = domain.WithdrawnNoMatch{}
		if err := json.Unmarshal(buf, &event); err != nil {
			return nil, err
		}
		return event, nil
	case domain.EventTypeVaultSettled:
		var event = domain.VaultSettled{}
		if err := json.Unmarshal(buf, &event); err != nil {
			return nil, err
		}
		return event, nil
	}

	return nil, fmt.Errorf("unknown event type %d", eventType.Type)
}

// ParseAmount parses a base 10 amount, the empty string being zero.
func ParseAmount(s string) (math.Int, error) {
	if s == "" {
		return math.ZeroInt(), nil
	}
	amount, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func FormatAmount(amount math.Int) string {
	if amount.IsNil() {
		return "0"
	}
	return amount.String()
}

// Settlement is the flat storage representation of a settlement outcome.
type Settlement struct {
	Height         int64
	Proceeds       string
	InvestorPayout string
	CreatorPayout  string
	InvestorYield  string
	CreatorYield   string
	Shortfall      string
	CreatorLoss    string
	CreatorShares  string
	InvestorReward string
	CreatorReward  string
}

func FromSettlement(s domain.Settlement) Settlement {
	return Settlement{
		Height:         s.Height,
		Proceeds:       FormatAmount(s.Proceeds),
		InvestorPayout: FormatAmount(s.InvestorPayout),
		CreatorPayout:  FormatAmount(s.CreatorPayout),
		InvestorYield:  FormatAmount(s.InvestorYield),
		CreatorYield:   FormatAmount(s.CreatorYield),
		Shortfall:      FormatAmount(s.Shortfall),
		CreatorLoss:    FormatAmount(s.CreatorLoss),
		CreatorShares:  FormatAmount(s.CreatorShares),
		InvestorReward: FormatAmount(s.InvestorReward),
		CreatorReward:  FormatAmount(s.CreatorReward),
	}
}

func (s Settlement) ToDomain() (*domain.Settlement, error) {
	amounts := []string{
		s.Proceeds, s.InvestorPayout, s.CreatorPayout, s.InvestorYield, s.CreatorYield,
		s.Shortfall, s.CreatorLoss, s.CreatorShares, s.InvestorReward, s.CreatorReward,
	}
	parsed := make([]math.Int, 0, len(amounts))
	for _, str := range amounts {
		amount, err := ParseAmount(str)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, amount)
	}
	return &domain.Settlement{
		Height:         s.Height,
		Proceeds:       parsed[0],
		InvestorPayout: parsed[1],
		CreatorPayout:  parsed[2],
		InvestorYield:  parsed[3],
		CreatorYield:   parsed[4],
		Shortfall:      parsed[5],
		CreatorLoss:    parsed[6],
		CreatorShares:  parsed[7],
		InvestorReward: parsed[8],
		CreatorReward:  parsed[9],
	}, nil
}
