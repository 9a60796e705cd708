package errors

import "fmt"

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

// Language selects the language used for human-readable code descriptions.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageChinese Language = "zh"
)

const (
	// General errors (1-99)
	ErrCodeUnknown  ErrorCode = 1
	ErrCodeInternal ErrorCode = 2

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeMissingParameter     ErrorCode = 101
	ErrCodeInvalidParameter     ErrorCode = 102
	ErrCodeConfigParseFailed    ErrorCode = 103
	ErrCodeVersionMismatch      ErrorCode = 104
	ErrCodeUnsupportedNodeType  ErrorCode = 105

	// Cache errors (200-299)
	ErrCodeCacheKeyNotFound     ErrorCode = 200
	ErrCodeCacheIndexOutOfRange ErrorCode = 201
	ErrCodeCacheInvalidLimit    ErrorCode = 202
	ErrCodeCacheTimeNotFound    ErrorCode = 203
	ErrCodeBackfillFailed       ErrorCode = 204

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorCalculation   ErrorCode = 302
	ErrCodeInsufficientData       ErrorCode = 303

	// Strategy errors (400-499)
	ErrCodeGraphCycle           ErrorCode = 400
	ErrCodeGraphDanglingEdge    ErrorCode = 401
	ErrCodeGraphDuplicateNode   ErrorCode = 402
	ErrCodeStrategyNotReady     ErrorCode = 403
	ErrCodeStrategyFailed       ErrorCode = 404
	ErrCodeKlineLengthMismatch  ErrorCode = 405
	ErrCodeNodesStopTimeout     ErrorCode = 406
	ErrCodeStrategyKeyNotFound  ErrorCode = 407
	ErrCodeVariableNotFound     ErrorCode = 408
	ErrCodeStrategyRuntimeError ErrorCode = 409

	// Trading errors (500-599)
	ErrCodeOrderFailed      ErrorCode = 500
	ErrCodePositionNotFound ErrorCode = 501
	ErrCodePriceMissing     ErrorCode = 502
	ErrCodeInvalidOrder     ErrorCode = 503

	// Node runtime errors (600-699)
	ErrCodeNodeInitFailed    ErrorCode = 600
	ErrCodeNodeActionFailed  ErrorCode = 601
	ErrCodeNodeStopTimeout   ErrorCode = 602
	ErrCodeHandleNotFound    ErrorCode = 603
	ErrCodeChannelClosed     ErrorCode = 604
	ErrCodeLagged            ErrorCode = 605
	ErrCodeNoListeners       ErrorCode = 606
	ErrCodeNodeFailed        ErrorCode = 607
	ErrCodeNodeEventRejected ErrorCode = 608

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
	ErrCodeQueryFailed           ErrorCode = 702
	ErrCodeInvalidInterval       ErrorCode = 703

	// Command errors (800-899)
	ErrCodeCommandFailed       ErrorCode = 800
	ErrCodeCommandUnhandled    ErrorCode = 801
	ErrCodeAlreadyResponded    ErrorCode = 802
	ErrCodeOwnerGone           ErrorCode = 803
	ErrCodeCommandChannelFull  ErrorCode = 804
	ErrCodeCommandTypeMismatch ErrorCode = 805

	// State machine errors (900-999)
	ErrCodeInvalidStateTransition ErrorCode = 900
)

type codeText struct {
	en string
	zh string
}

var codeTexts = map[ErrorCode]codeText{
	ErrCodeUnknown:  {"unknown error", "未知错误"},
	ErrCodeInternal: {"internal error", "内部错误"},

	ErrCodeInvalidConfiguration: {"invalid configuration", "配置无效"},
	ErrCodeMissingParameter:     {"missing parameter", "缺少参数"},
	ErrCodeInvalidParameter:     {"invalid parameter", "参数无效"},
	ErrCodeConfigParseFailed:    {"failed to parse configuration", "配置解析失败"},
	ErrCodeVersionMismatch:      {"engine version mismatch", "引擎版本不匹配"},
	ErrCodeUnsupportedNodeType:  {"unsupported node type", "不支持的节点类型"},

	ErrCodeCacheKeyNotFound:     {"cache key not found", "缓存键不存在"},
	ErrCodeCacheIndexOutOfRange: {"cache index out of range", "缓存索引越界"},
	ErrCodeCacheInvalidLimit:    {"invalid cache limit", "缓存数量参数无效"},
	ErrCodeCacheTimeNotFound:    {"no cached value at the given time", "缓存中不存在该时间的数据"},
	ErrCodeBackfillFailed:       {"history backfill failed", "历史数据回填失败"},

	ErrCodeIndicatorNotFound:      {"indicator not found", "指标不存在"},
	ErrCodeIndicatorAlreadyExists: {"indicator already registered", "指标已注册"},
	ErrCodeIndicatorCalculation:   {"indicator calculation failed", "指标计算失败"},
	ErrCodeInsufficientData:       {"insufficient data", "数据不足"},

	ErrCodeGraphCycle:           {"strategy graph contains a cycle", "策略图存在环"},
	ErrCodeGraphDanglingEdge:    {"edge references a missing node or handle", "连线引用了不存在的节点或句柄"},
	ErrCodeGraphDuplicateNode:   {"duplicate node id", "节点ID重复"},
	ErrCodeStrategyNotReady:     {"strategy is not ready", "策略未就绪"},
	ErrCodeStrategyFailed:       {"strategy failed", "策略运行失败"},
	ErrCodeKlineLengthMismatch:  {"kline series lengths differ", "K线数据长度不一致"},
	ErrCodeNodesStopTimeout:     {"timed out waiting for nodes to stop", "等待节点停止超时"},
	ErrCodeStrategyKeyNotFound:  {"key does not belong to the strategy", "键不属于当前策略"},
	ErrCodeVariableNotFound:     {"variable not found", "变量不存在"},
	ErrCodeStrategyRuntimeError: {"strategy runtime error", "策略运行时错误"},

	ErrCodeOrderFailed:      {"order failed", "下单失败"},
	ErrCodePositionNotFound: {"position not found", "仓位不存在"},
	ErrCodePriceMissing:     {"no price for symbol", "缺少交易对价格"},
	ErrCodeInvalidOrder:     {"invalid order", "订单无效"},

	ErrCodeNodeInitFailed:    {"node initialization failed", "节点初始化失败"},
	ErrCodeNodeActionFailed:  {"node action failed", "节点动作执行失败"},
	ErrCodeNodeStopTimeout:   {"timed out waiting for node tasks", "等待节点任务结束超时"},
	ErrCodeHandleNotFound:    {"output handle not found", "输出句柄不存在"},
	ErrCodeChannelClosed:     {"channel closed", "通道已关闭"},
	ErrCodeLagged:            {"subscriber lagged and missed events", "订阅者落后，丢失事件"},
	ErrCodeNoListeners:       {"output handle has no listeners", "输出句柄没有订阅者"},
	ErrCodeNodeFailed:        {"node failed", "节点运行失败"},
	ErrCodeNodeEventRejected: {"node rejected event", "节点拒绝处理事件"},

	ErrCodeMarketDataFetchFailed: {"market data fetch failed", "行情数据获取失败"},
	ErrCodeMarketDataParseFailed: {"market data parse failed", "行情数据解析失败"},
	ErrCodeQueryFailed:           {"query failed", "查询失败"},
	ErrCodeInvalidInterval:       {"invalid kline interval", "K线周期无效"},

	ErrCodeCommandFailed:       {"command failed", "命令执行失败"},
	ErrCodeCommandUnhandled:    {"command was not handled", "命令未被处理"},
	ErrCodeAlreadyResponded:    {"command already responded", "命令已响应"},
	ErrCodeOwnerGone:           {"command owner is gone", "命令接收方已关闭"},
	ErrCodeCommandChannelFull:  {"command channel full", "命令通道已满"},
	ErrCodeCommandTypeMismatch: {"command response type mismatch", "命令响应类型不匹配"},

	ErrCodeInvalidStateTransition: {"invalid state transition", "无效的状态转换"},
}

// Prefix returns the category prefix of the code.
func (c ErrorCode) Prefix() string {
	switch {
	case c >= 100 && c < 200:
		return "CONFIG"
	case c >= 200 && c < 300:
		return "CACHE"
	case c >= 300 && c < 400:
		return "INDICATOR"
	case c >= 400 && c < 500:
		return "STRATEGY"
	case c >= 500 && c < 600:
		return "TRADING"
	case c >= 600 && c < 700:
		return "NODE"
	case c >= 700 && c < 800:
		return "MARKET"
	case c >= 800 && c < 900:
		return "COMMAND"
	case c >= 900 && c < 1000:
		return "STATE"
	default:
		return "GENERAL"
	}
}

// String renders the stable machine-readable form, e.g. CACHE_0201.
func (c ErrorCode) String() string {
	return fmt.Sprintf("%s_%04d", c.Prefix(), int(c))
}

// Describe returns the human-readable description of the code in the given language.
// Unknown languages fall back to English.
func (c ErrorCode) Describe(lang Language) string {
	text, ok := codeTexts[c]
	if !ok {
		text = codeTexts[ErrCodeUnknown]
	}

	if lang == LanguageChinese {
		return text.zh
	}

	return text.en
}
