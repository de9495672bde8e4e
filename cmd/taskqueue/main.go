// Package main 是 taskqueue CLI 的入口
package main

import "yqhp/taskqueue/cmd"

func main() {
	cmd.Execute()
}
