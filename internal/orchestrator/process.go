package orchestrator

var processAliveFunc = processAlive

func isProcessAlive(pid int) bool {
	return processAliveFunc(pid)
}
