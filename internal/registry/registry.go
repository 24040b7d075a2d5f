package registry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
)

// EnvDisabledTools is a comma separated list of tool names to leave unregistered
const EnvDisabledTools = "DISABLED_TOOLS"

var (
	mu sync.RWMutex

	// toolRegistry maps tool names to implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools holds normalised tool names
	disabledTools = make(map[string]bool)

	logger *logrus.Logger

	// cache is shared by every tool call
	cache *sync.Map
)

// Init sets the shared logger and cache and reads DISABLED_TOOLS
func Init(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()

	logger = l
	cache = &sync.Map{}
	parseDisabledTools()
}

// parseDisabledTools rebuilds the disabled set. Caller must hold mu.
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	for name := range strings.SplitSeq(os.Getenv(EnvDisabledTools), ",") {
		name = normaliseToolName(name)
		if name == "" {
			continue
		}
		disabledTools[name] = true
		if logger != nil {
			logger.WithField("tool", name).Debug("Tool disabled")
		}
	}
}

// normaliseToolName lowercases and treats hyphens and underscores alike
func normaliseToolName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
}

// ShouldRegisterTool reports whether name is absent from DISABLED_TOOLS
func ShouldRegisterTool(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return !disabledTools[normaliseToolName(name)]
}

// Register adds a tool. Tools are registered from init so the disabled list
// is checked again at lookup time once Init has run.
func Register(tool tools.Tool) {
	name := tool.Definition().Name

	mu.Lock()
	defer mu.Unlock()

	if disabledTools[normaliseToolName(name)] {
		if logger != nil {
			logger.WithField("tool", name).Debug("Tool not registered (disabled)")
		}
		return
	}

	toolRegistry[name] = tool
	if logger != nil {
		logger.WithField("tool", name).Debug("Tool registered")
	}
}

// GetTool retrieves an enabled tool by name
func GetTool(name string) (tools.Tool, bool) {
	mu.RLock()
	defer mu.RUnlock()

	if disabledTools[normaliseToolName(name)] {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns the tools to expose on the MCP server
func GetEnabledTools() map[string]tools.Tool {
	mu.RLock()
	defer mu.RUnlock()

	enabled := make(map[string]tools.Tool, len(toolRegistry))
	for name, tool := range toolRegistry {
		if disabledTools[normaliseToolName(name)] {
			continue
		}
		enabled[name] = tool
	}
	return enabled
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// GetCache returns the shared cache instance
func GetCache() *sync.Map {
	mu.RLock()
	defer mu.RUnlock()
	return cache
}

// GetEnabledToolNames returns enabled tool names, sorted
func GetEnabledToolNames() []string {
	names := make([]string, 0)
	for name := range GetEnabledTools() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns sorted names of enabled tools that implement ExtendedHelpProvider
func GetToolNamesWithExtendedHelp() []string {
	names := make([]string, 0)
	for name, tool := range GetEnabledTools() {
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
