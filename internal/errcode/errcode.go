package errcode

// 通知错误码约定：
// - 0：成功
// - 4xxx：业务错误，重试无意义（CV 已删除、布局无法打印）
// - 5xxx：系统错误，任务会被重试
const (
	OK             = 0
	CVNotFound     = 4004
	NothingToPrint = 4022
	SystemError    = 5000
)
