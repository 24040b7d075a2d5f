package imports

import (
	// Tools register themselves with the registry from init
	_ "github.com/sammcj/mcp-sheets/internal/tools/sheets"
	_ "github.com/sammcj/mcp-sheets/internal/tools/utilities/toolhelp"
)
