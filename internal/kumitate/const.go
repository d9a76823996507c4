package kumitate

const (
	kumitatePkgPath = "github.com/mizumoto/kumitate"

	providerTypeName        = "Provider"
	lazyTypeName            = "Lazy"
	producerTypeName        = "Producer"
	futureTypeName          = "Future"
	producedTypeName        = "Produced"
	optionalTypeName        = "Optional"
	membersInjectorTypeName = "MembersInjector"
	executorTypeName        = "Executor"

	contextPkgPath  = "context"
	contextTypeName = "Context"
)

const injectTagName = "inject"
