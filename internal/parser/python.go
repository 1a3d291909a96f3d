package parser

// pythonKindCategory maps tree-sitter-python node kinds into the closed set
func pythonKindCategory(kind string) Category {
	switch kind {
	case "function_definition":
		return CategoryFunction
	case "class_definition":
		return CategoryClass
	default:
		return CategoryOpaque
	}
}
