package kumitate_test

import (
	"errors"
	"fmt"

	"github.com/mizumoto/kumitate"
)

// ExampleComponent demonstrates a basic component declaration.
func ExampleComponent() {
	// Define your service constructors
	NewConfig := func() *Config { return &Config{} }
	NewDatabase := func(cfg *Config) (*Database, error) { return &Database{}, nil }
	NewUserService := func(db *Database) *UserService { return &UserService{} }
	NewApp := func(svc *UserService) *App { return &App{} }

	// Declare the component
	var _ = kumitate.Component[*App]("App",
		kumitate.Module("app",
			kumitate.Provide(NewConfig),
			kumitate.Provide(NewDatabase),
			kumitate.Provide(NewUserService),
			kumitate.Provide(NewApp),
		),
	)

	// The analyzer resolves the graph reachable from *App and reports
	// every problem with its full dependency trace.
	fmt.Println("Declared App component")
	// Output: Declared App component
}

// ExampleScoped demonstrates scoped bindings owned by the declaring component.
func ExampleScoped() {
	NewDatabase := func() (*Database, error) { return &Database{}, nil }
	NewUserService := func(db *Database) *UserService { return &UserService{} }
	NewApp := func(svc *UserService) *App { return &App{} }

	var _ = kumitate.Component[*App]("App",
		kumitate.InScope(kumitate.ScopeSingleton),
		kumitate.Module("app",
			// The database lives as long as the App component.
			kumitate.Scoped(kumitate.ScopeSingleton, kumitate.Provide(NewDatabase)),
			kumitate.Provide(NewUserService),
			kumitate.Provide(NewApp),
		),
	)

	fmt.Println("Declared App component with a singleton database")
	// Output: Declared App component with a singleton database
}

// ExampleBind demonstrates interface binding to concrete implementations.
func ExampleBind() {
	type UserRepository interface {
		GetUser(id string) (*User, error)
	}
	type DatabaseUserRepo struct{}

	NewDatabaseUserRepo := func() *DatabaseUserRepo { return &DatabaseUserRepo{} }
	NewUserService := func(repo UserRepository) *UserService { return &UserService{} }
	NewApp := func(svc *UserService) *App { return &App{} }

	var _ = kumitate.Component[*App]("App",
		kumitate.Module("app",
			kumitate.Bind[UserRepository](kumitate.Provide(NewDatabaseUserRepo)),
			kumitate.Provide(NewUserService),
			kumitate.Provide(NewApp),
		),
	)

	fmt.Println("Declared App component with interface binding")
	// Output: Declared App component with interface binding
}

// ExampleIntoSet demonstrates multibound set contributions.
func ExampleIntoSet() {
	NewAuthHandler := func() Handler { return Handler{} }
	NewUserHandler := func() Handler { return Handler{} }
	NewServer := func(handlers []Handler) *Server { return &Server{} }

	var _ = kumitate.Component[*Server]("Server",
		kumitate.Module("handlers",
			kumitate.IntoSet(kumitate.Provide(NewAuthHandler)),
			kumitate.IntoSet(kumitate.Provide(NewUserHandler)),
			kumitate.Provide(NewServer),
		),
	)

	fmt.Println("Declared Server component collecting []Handler")
	// Output: Declared Server component collecting []Handler
}

// ExampleIntoMap demonstrates multibound map contributions keyed by constants.
func ExampleIntoMap() {
	NewAuthHandler := func() Handler { return Handler{} }
	NewUserHandler := func() Handler { return Handler{} }
	NewRouter := func(routes map[string]Handler) *Server { return &Server{} }

	var _ = kumitate.Component[*Server]("Router",
		kumitate.Module("routes",
			kumitate.IntoMap("/auth", kumitate.Provide(NewAuthHandler)),
			kumitate.IntoMap("/users", kumitate.Provide(NewUserHandler)),
			kumitate.Provide(NewRouter),
		),
	)

	fmt.Println("Declared Router component collecting map[string]Handler")
	// Output: Declared Router component collecting map[string]Handler
}

// ExampleSubcomponent demonstrates a child component sharing its parent's
// bindings.
func ExampleSubcomponent() {
	NewDatabase := func() *Database { return &Database{} }
	NewApp := func(db *Database) *App { return &App{} }
	NewRequestHandler := func(db *Database) Handler { return Handler{} }

	var _ = kumitate.Component[*App]("App",
		kumitate.InScope(kumitate.ScopeSingleton),
		kumitate.Module("infra",
			kumitate.Scoped(kumitate.ScopeSingleton, kumitate.Provide(NewDatabase)),
			kumitate.Provide(NewApp),
		),
		kumitate.Subcomponent[Handler]("Request",
			kumitate.Module("request",
				kumitate.Provide(NewRequestHandler),
			),
		),
	)

	fmt.Println("Declared App component with a Request subcomponent")
	// Output: Declared App component with a Request subcomponent
}

func ExampleOptional() {
	present := kumitate.Of(&Config{})
	absent := kumitate.Empty[*Config]()

	fmt.Println(present.IsPresent(), absent.IsPresent())
	if cfg := absent.OrElse(&Config{}); cfg != nil {
		fmt.Println("fallback applied")
	}
	// Output:
	// true false
	// fallback applied
}

func ExampleProduced() {
	ok := kumitate.Success(&Database{})
	failed := kumitate.Failure[*Database](errors.New("connect: refused"))

	if _, err := ok.Get(); err == nil {
		fmt.Println("database produced")
	}
	if _, err := failed.Get(); err != nil {
		fmt.Println("production failed:", err)
	}
	// Output:
	// database produced
	// production failed: connect: refused
}

// Example types for documentation
type (
	Config      struct{}
	Database    struct{}
	UserService struct{}
	App         struct{}
	User        struct{}
	Handler     struct{}
	Server      struct{}
)
