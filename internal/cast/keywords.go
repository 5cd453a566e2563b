package cast

import "sparsego/internal/ident"

// keywords lists the reserved words the parser recognizes by name. They
// are interned once per Session via RegisterKeywords, which marks them
// Reserved the same way internal/ident.Table.BuiltIn marks any other
// built-in identifier.
var keywords = []string{
	"if", "else", "while", "do", "for", "switch", "case", "default",
	"break", "continue", "return", "goto", "sizeof", "__alignof__",
	"_Alignof", "struct", "union", "enum", "typedef", "static", "extern",
	"auto", "register", "const", "volatile", "inline", "restrict",
	"void", "char", "short", "int", "long", "float", "double",
	"signed", "unsigned", "_Bool", "asm", "__asm__",
	"__typeof__", "typeof", "__attribute__", "__builtin_types_compatible_p",
	"__builtin_offsetof", "__builtin_choose_expr", "__context__",
}

// RegisterKeywords interns every reserved word for a Session's identifier
// table, so the parser can test identOf(t).Reserved instead of a string
// switch at every token.
func RegisterKeywords(interner *ident.Table) {
	for _, kw := range keywords {
		interner.BuiltIn(kw)
	}
}
