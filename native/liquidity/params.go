package liquidity

import (
	"fmt"

	"github.com/holiman/uint256"
)

var (
	rewardConfigKey = []byte("liquidity/params/reward")
	feeConfigKey    = []byte("liquidity/params/fee")
	limitConfigKey  = []byte("liquidity/params/limit")
)

type storedRate struct {
	Numerator   string
	Denominator string
}

type storedRewardConfig struct {
	Instant  storedRate
	Epoch    storedRate
	EpochMin string
	EpochMax string
}

func encodeRate(r Rate) storedRate {
	return storedRate{Numerator: r.Numerator.Dec(), Denominator: r.Denominator.Dec()}
}

func decodeRate(field string, s storedRate) (Rate, error) {
	num, err := parseAmount(field+" numerator", s.Numerator)
	if err != nil {
		return Rate{}, err
	}
	den, err := parseAmount(field+" denominator", s.Denominator)
	if err != nil {
		return Rate{}, err
	}
	return Rate{Numerator: *num, Denominator: *den}, nil
}

// DefaultRewardConfig is 0/1 instant, 0/1 per epoch, no floor and no ceiling.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{Instant: ZeroRate(), Epoch: ZeroRate()}
}

// DefaultFeeConfig charges nothing.
func DefaultFeeConfig() FeeConfig { return FeeConfig{Fee: ZeroRate()} }

// DefaultLimitConfig lets the whole balance be withdrawn at once.
func DefaultLimitConfig() LimitConfig { return LimitConfig{Limit: OneRate()} }

// Validate checks both rates and the clamp widths.
func (c RewardConfig) Validate() error {
	if err := c.Instant.Validate(); err != nil {
		return fmt.Errorf("instant reward: %w", err)
	}
	if err := c.Epoch.Validate(); err != nil {
		return fmt.Errorf("epoch reward: %w", err)
	}
	if c.EpochMin.BitLen() > maxRateBits || c.EpochMax.BitLen() > maxRateBits {
		return fmt.Errorf("epoch clamps: %w", ErrAmountOverflow)
	}
	return nil
}

func (c FeeConfig) Validate() error {
	if err := c.Fee.Validate(); err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	return nil
}

func (c LimitConfig) Validate() error {
	if err := c.Limit.Validate(); err != nil {
		return fmt.Errorf("limit: %w", err)
	}
	return nil
}

// clamp applies the optional floor then the optional ceiling to a raw step
// reward.
func (c RewardConfig) clamp(raw *uint256.Int) *uint256.Int {
	reward := new(uint256.Int).Set(raw)
	if !c.EpochMin.IsZero() && reward.Lt(&c.EpochMin) {
		reward.Set(&c.EpochMin)
	}
	if !c.EpochMax.IsZero() && reward.Gt(&c.EpochMax) {
		reward.Set(&c.EpochMax)
	}
	return reward
}

// ConfigStore persists the pool parameters. Reads of an unset record return
// the default; setters replace a record wholesale.
type ConfigStore struct {
	store Storage
}

// NewConfigStore binds a parameter store to the supplied storage.
func NewConfigStore(store Storage) *ConfigStore {
	return &ConfigStore{store: store}
}

func (s *ConfigStore) RewardConfig() (RewardConfig, error) {
	if s == nil || s.store == nil {
		return RewardConfig{}, ErrNilState
	}
	var stored storedRewardConfig
	ok, err := s.store.KVGet(rewardConfigKey, &stored)
	if err != nil {
		return RewardConfig{}, err
	}
	if !ok {
		return DefaultRewardConfig(), nil
	}
	instant, err := decodeRate("instant", stored.Instant)
	if err != nil {
		return RewardConfig{}, err
	}
	epoch, err := decodeRate("epoch", stored.Epoch)
	if err != nil {
		return RewardConfig{}, err
	}
	floor, err := parseAmount("epoch min", stored.EpochMin)
	if err != nil {
		return RewardConfig{}, err
	}
	ceiling, err := parseAmount("epoch max", stored.EpochMax)
	if err != nil {
		return RewardConfig{}, err
	}
	return RewardConfig{Instant: instant, Epoch: epoch, EpochMin: *floor, EpochMax: *ceiling}, nil
}

func (s *ConfigStore) SetRewardConfig(cfg RewardConfig) error {
	if s == nil || s.store == nil {
		return ErrNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.store.KVPut(rewardConfigKey, storedRewardConfig{
		Instant:  encodeRate(cfg.Instant),
		Epoch:    encodeRate(cfg.Epoch),
		EpochMin: cfg.EpochMin.Dec(),
		EpochMax: cfg.EpochMax.Dec(),
	})
}

func (s *ConfigStore) FeeConfig() (FeeConfig, error) {
	if s == nil || s.store == nil {
		return FeeConfig{}, ErrNilState
	}
	var stored storedRate
	ok, err := s.store.KVGet(feeConfigKey, &stored)
	if err != nil {
		return FeeConfig{}, err
	}
	if !ok {
		return DefaultFeeConfig(), nil
	}
	fee, err := decodeRate("fee", stored)
	if err != nil {
		return FeeConfig{}, err
	}
	return FeeConfig{Fee: fee}, nil
}

func (s *ConfigStore) SetFeeConfig(cfg FeeConfig) error {
	if s == nil || s.store == nil {
		return ErrNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.store.KVPut(feeConfigKey, encodeRate(cfg.Fee))
}

func (s *ConfigStore) LimitConfig() (LimitConfig, error) {
	if s == nil || s.store == nil {
		return LimitConfig{}, ErrNilState
	}
	var stored storedRate
	ok, err := s.store.KVGet(limitConfigKey, &stored)
	if err != nil {
		return LimitConfig{}, err
	}
	if !ok {
		return DefaultLimitConfig(), nil
	}
	limit, err := decodeRate("limit", stored)
	if err != nil {
		return LimitConfig{}, err
	}
	return LimitConfig{Limit: limit}, nil
}

func (s *ConfigStore) SetLimitConfig(cfg LimitConfig) error {
	if s == nil || s.store == nil {
		return ErrNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.store.KVPut(limitConfigKey, encodeRate(cfg.Limit))
}
