package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// Dispatch executes one parsed command against store and returns the
// frame to send back. It never returns an error: every outcome,
// including an unknown command or an arity violation, is resolved to a
// protocol-level reply here, not left for the caller to translate.
func Dispatch(store *Store, stats *ServerStats, cmd ParsedCommand) RESPFrame {
	if store == nil {
		log.Printf("dispatch: %v", ErrStoreNotInitialized)
		return ErrorFrame(ErrStoreNotInitialized.Error())
	}

	stats.TotalOps.Inc()

	if cmd.Command == CommandUnknown {
		return ErrorFrame("Unrecognized command")
	}
	if !arityOK(cmd.Command, len(cmd.Args)) {
		return ErrorFrame(fmt.Sprintf("wrong number of arguments for '%s' command", strings.ToLower(cmd.Command.String())))
	}

	switch cmd.Command {
	case CommandPing:
		return dispatchPing(stats)
	case CommandEcho:
		return dispatchEcho(cmd.Args)
	case CommandGet:
		return dispatchGet(store, stats, cmd.Args[0])
	case CommandSet:
		return dispatchSet(store, stats, cmd.Args)
	case CommandDelete:
		return dispatchDelete(store, stats, cmd.Args)
	default:
		return ErrorFrame("Unrecognized command")
	}
}

func dispatchPing(stats *ServerStats) RESPFrame {
	return SimpleStringFrame("PONG " + stats.pingStatsLine())
}

func dispatchEcho(args []string) RESPFrame {
	return BulkStringFrame([]byte(strings.Join(args, " ")))
}

func dispatchGet(store *Store, stats *ServerStats, key string) RESPFrame {
	stats.GetOps.Inc()

	result := store.Get(key)
	if result.Err != nil {
		if errors.Is(result.Err, ErrKeyNotFound) || errors.Is(result.Err, ErrKeyExpired) {
			return NullBulkFrame()
		}
		return ErrorFrame(result.Err.Error())
	}
	return storedValueToFrame(result.Value)
}

func dispatchSet(store *Store, stats *ServerStats, args []string) RESPFrame {
	stats.SetOps.Inc()

	key, rawValue := args[0], args[1]
	opts, err := parseSetOptions(args)
	if err != nil {
		log.Printf("dispatch: %v, storing without expiry", err)
	}
	value := parseSetValue(rawValue)

	store.Set(key, value, opts)
	return SimpleStringFrame("OK")
}

func dispatchDelete(store *Store, stats *ServerStats, keys []string) RESPFrame {
	stats.DelOps.Inc()
	count := store.Delete(keys)
	return IntegerFrame(int64(count))
}
