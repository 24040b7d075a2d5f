package toolhelp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/registry"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
)

// ToolName is the MCP name of the help tool
const ToolName = "get_tool_help"

// ToolHelpTool returns the extended help of other registered tools
type ToolHelpTool struct{}

// ToolHelpResponse is the get_tool_help result
type ToolHelpResponse struct {
	ToolName     string               `json:"tool_name"`
	Description  string               `json:"description"`
	InputSchema  *mcp.ToolInputSchema `json:"input_schema,omitempty"`
	ExtendedInfo *tools.ExtendedHelp  `json:"extended_info,omitempty"`
}

func init() {
	registry.Register(&ToolHelpTool{})
}

// Definition returns the tool's definition for MCP registration. The enum
// lists tools with extended help registered at the time it is called.
func (t *ToolHelpTool) Definition() mcp.Tool {
	names := registry.GetToolNamesWithExtendedHelp()

	description := "Get detailed usage examples and troubleshooting for spreadsheet tools when a call fails unexpectedly."
	if len(names) == 0 {
		description = "No tools currently provide extended help information."
	}

	return mcp.NewTool(
		ToolName,
		mcp.WithDescription(description),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool to get help for"),
			mcp.Enum(names...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute returns the named tool's definition and extended help
func (t *ToolHelpTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	toolName, ok := args["tool_name"].(string)
	if !ok || strings.TrimSpace(toolName) == "" {
		return nil, fmt.Errorf("missing or invalid required parameter: tool_name")
	}

	tool, exists := registry.GetTool(toolName)
	if !exists {
		return nil, fmt.Errorf("tool '%s' not found or disabled. Tools with extended help: %s",
			toolName, strings.Join(registry.GetToolNamesWithExtendedHelp(), ", "))
	}

	provider, ok := tool.(tools.ExtendedHelpProvider)
	if !ok {
		return nil, fmt.Errorf("tool '%s' does not provide extended help. Tools with extended help: %s",
			toolName, strings.Join(registry.GetToolNamesWithExtendedHelp(), ", "))
	}

	definition := tool.Definition()
	response := &ToolHelpResponse{
		ToolName:     definition.Name,
		Description:  definition.Description,
		ExtendedInfo: provider.ProvideExtendedInfo(),
	}
	if definition.InputSchema.Type != "" {
		response.InputSchema = &definition.InputSchema
	}

	logger.WithField("tool", toolName).Debug("Returning extended help")
	return tools.NewJSONResult(response)
}
