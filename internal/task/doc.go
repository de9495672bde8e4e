// Package task 提供任务注册表、任务解析器和任务执行器。
//
// 任务通过名称注册到 Registry；Resolver 先查询本地注册表，在启用自动发现时
// 再按声明顺序查询发现源；Runner 负责解析并调用任务，未找到的任务只记录
// 错误日志后丢弃。
package task
