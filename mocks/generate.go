package mocks

//go:generate mockgen -destination=./mock_kline_source.go -package=mocks github.com/rxtech-lab/argo-graph/internal/datasource KlineSource
//go:generate mockgen -destination=./mock_calculator.go -package=mocks github.com/rxtech-lab/argo-graph/internal/indicator Calculator
//go:generate mockgen -destination=./mock_trading.go -package=mocks github.com/rxtech-lab/argo-graph/internal/trading TradingSystem
