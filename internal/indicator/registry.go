package indicator

import (
	"sort"
	"sync"

	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// IndicatorRegistry manages all available indicators.
type IndicatorRegistry interface {
	Calculator
	RegisterIndicator(indicator Indicator) error
	GetIndicator(name types.IndicatorType) (Indicator, error)
	ListIndicators() []types.IndicatorType
	RemoveIndicator(name types.IndicatorType) error
}

// IndicatorRegistryV1 manages all available indicators.
type IndicatorRegistryV1 struct {
	indicators map[types.IndicatorType]Indicator
	mu         sync.RWMutex
}

// NewIndicatorRegistry creates an empty registry.
func NewIndicatorRegistry() *IndicatorRegistryV1 {
	return &IndicatorRegistryV1{
		indicators: make(map[types.IndicatorType]Indicator),
		mu:         sync.RWMutex{},
	}
}

// NewDefaultRegistry returns a registry holding every built-in indicator.
func NewDefaultRegistry() *IndicatorRegistryV1 {
	r := NewIndicatorRegistry()

	for _, ind := range []Indicator{NewMA(), NewEMA(), NewRSI(), NewBollingerBands(), NewMACD(), NewATR()} {
		// names are distinct, registration cannot fail
		_ = r.RegisterIndicator(ind)
	}

	return r
}

// RegisterIndicator adds an indicator to the registry.
func (r *IndicatorRegistryV1) RegisterIndicator(indicator Indicator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := indicator.Name()
	if _, exists := r.indicators[name]; exists {
		return errors.Newf(errors.ErrCodeIndicatorAlreadyExists, "indicator with name %s already registered", name)
	}

	r.indicators[name] = indicator

	return nil
}

// GetIndicator retrieves an indicator by name.
func (r *IndicatorRegistryV1) GetIndicator(name types.IndicatorType) (Indicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indicator, exists := r.indicators[name]
	if !exists {
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "indicator with name %s not found", name)
	}

	return indicator, nil
}

// ListIndicators returns the registered indicator names, sorted.
func (r *IndicatorRegistryV1) ListIndicators() []types.IndicatorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]types.IndicatorType, 0, len(r.indicators))
	for name := range r.indicators {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	return names
}

// RemoveIndicator removes an indicator from the registry.
func (r *IndicatorRegistryV1) RemoveIndicator(name types.IndicatorType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indicators[name]; !exists {
		return errors.Newf(errors.ErrCodeIndicatorNotFound, "indicator with name %s not found", name)
	}

	delete(r.indicators, name)

	return nil
}

// Calculate runs the named indicator over data.
func (r *IndicatorRegistryV1) Calculate(name types.IndicatorType, data OHLC, params types.IndicatorConfig) (Series, error) {
	ind, err := r.GetIndicator(name)
	if err != nil {
		return nil, err
	}

	lookback, err := ind.Lookback(params)
	if err != nil {
		return nil, err
	}

	if data.Len() <= lookback {
		return nil, errors.NewInsufficientDataErrorf(lookback+1, data.Len(), string(name),
			"%s needs at least %d bars, got %d", params, lookback+1, data.Len())
	}

	series, err := ind.Calculate(data, params)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "calculate %s", params)
	}

	return series, nil
}

// Lookback returns the named indicator's lookback for params.
func (r *IndicatorRegistryV1) Lookback(name types.IndicatorType, params types.IndicatorConfig) (int, error) {
	ind, err := r.GetIndicator(name)
	if err != nil {
		return 0, err
	}

	return ind.Lookback(params)
}

func requirePositive(name string, v int) error {
	if v <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "%s must be a positive integer, got %d", name, v)
	}

	return nil
}
