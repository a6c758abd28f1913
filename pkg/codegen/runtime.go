package codegen

// The runtime support contract: native helper routines the generated code
// calls by symbol name. They are implemented outside the compiler, in the
// runtime archive the driver links against. All follow the SysV calling
// convention; the generator is responsible for stack alignment and
// argument placement, the helpers only for their own behavior.
const (
	// reference management
	helperCloneAny   = "clone_any"    // rdi/rsi = any pair -> rax/rdx
	helperDropAny    = "drop_any"     // rdi/rsi = any pair
	helperDropPop    = "drop_pop"     // any pair on the stack; pops it
	helperDropPopCow = "drop_pop_cow" // cow pair on the stack; pops it

	// representation coercion
	helperAnyToDouble  = "any_to_double"          // rdi/rsi -> xmm0
	helperAnyToBool    = "any_to_bool"            // rax/rdx -> rax
	helperAnyToCow     = "any_to_cow"             // rdi/rsi -> rax/rdx
	helperDoubleToBool = "double_to_bool"         // xmm0 -> rax
	helperDoubleToCow  = "double_to_cow"          // xmm0 -> rax/rdx
	helperDoubleToInt  = "double_to_usize"        // xmm0 -> rax
	helperIntToDouble  = "usize_to_double"        // rdi -> xmm0
	helperBoolToDouble = "bool_to_double"         // rax -> xmm0
	helperBoolToStr    = "bool_to_static_str"     // rax -> rax/rdx
	helperStaticToBool = "static_str_to_bool"     // rax/rdx -> rax
	helperStaticToNum  = "static_str_to_double"   // rax/rdx -> xmm0
	helperOwnedToBool  = "owned_string_to_bool"   // rax/rdx -> rax, consumes
	helperOwnedToNum   = "owned_string_to_double" // rax/rdx -> xmm0, consumes

	// collection and text access
	helperListGet   = "list_get"   // rdi/rsi = index pair, rdx = list addr -> rax/rdx
	helperStrLength = "str_length" // cow pair on the stack -> rax
	helperCharAt    = "char_at"    // rdi/rsi = cow pair, rdx = index -> rax/rdx owned
)

// libc symbols reached through the PLT.
const (
	libcMalloc = "malloc"
	libcMemcpy = "memcpy"
	libcFmod   = "fmod"
)

// libm bindings for the transcendental operators; everything simpler is
// inlined with SSE instructions instead.
var libmFuncs = map[string]bool{
	"log": true, "log10": true, "exp": true, "exp10": true,
	"sin": true, "cos": true, "tan": true,
	"asin": true, "acos": true, "atan": true,
}

// RuntimeHelpers lists every runtime symbol the generator may reference,
// in a stable order. The prelude must declare each one extern; a test
// keeps the two in sync.
func RuntimeHelpers() []string {
	return []string{
		helperCloneAny, helperDropAny, helperDropPop, helperDropPopCow,
		helperAnyToDouble, helperAnyToBool, helperAnyToCow,
		helperDoubleToBool, helperDoubleToCow, helperDoubleToInt,
		helperIntToDouble, helperBoolToDouble, helperBoolToStr,
		helperStaticToBool, helperStaticToNum,
		helperOwnedToBool, helperOwnedToNum,
		helperListGet, helperStrLength, helperCharAt,
	}
}
