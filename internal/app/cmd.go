package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はfreshmartバイナリのサブコマンド。
type Command string

const (
	// CommandServe はBFFのHTTPサーバーを起動する。カタログの定期再取得もこのプロセスで行う。
	CommandServe Command = "serve"
	// CommandWorker は保存期間を過ぎたクライアント状態を削除するジョブを常駐させる。
	CommandWorker Command = "worker"
	// CommandMigrate はclient_statesテーブルのマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のserveの/healthを叩く。distrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck}

// ErrUnknownCommand は未知のサブコマンドが指定された場合のエラー。
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand はos.Args[1:]の先頭からサブコマンドを決める。
// 引数がない場合はserve。2つ目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}
	for _, c := range commands {
		if string(c) == args[0] {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w %q (usage: freshmart [%s])", ErrUnknownCommand, args[0], usage())
}

func usage() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return strings.Join(names, "|")
}
