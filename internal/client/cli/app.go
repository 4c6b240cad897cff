package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/secledger/internal/api"
	"github.com/dmitrijs2005/secledger/internal/client/client"
	"github.com/dmitrijs2005/secledger/internal/client/config"
	"github.com/dmitrijs2005/secledger/internal/server/models"
	"github.com/spf13/viper"
)

// securityClient is the server surface used by the commands.
type securityClient interface {
	GetSecurity(ctx context.Context, username string) (*models.UserSecurity, error)
	RegisterDevice(ctx context.Context, username, id, name string) (*models.UserSecurity, error)
	EnrollFaceID(ctx context.Context, username, faceID string) (string, error)
	RemoveFaceID(ctx context.Context, username string) (string, error)
	RequestBuddy(ctx context.Context, from, to string) (string, error)
	RespondToBuddy(ctx context.Context, to, from, action string) (*models.UserSecurity, error)
	SetupTwoFactor(ctx context.Context, username string) (*api.SetupTwoFactorResponse, error)
	VerifyAndEnable(ctx context.Context, username, token string) (string, error)
	DisableTwoFactor(ctx context.Context, username string) (string, error)
	LoginVerify(ctx context.Context, username, token string) (*api.LoginVerifyResponse, error)
	CheckAssertion(ctx context.Context, assertion string) (string, error)
	Close() error
}

type App struct {
	viper  *viper.Viper
	config *config.Config
	client securityClient
	dial   func(cfg *config.Config) (securityClient, error)
	in     *bufio.Reader
	out    io.Writer
}

func NewApp() *App {
	return &App{
		viper: config.NewViper(),
		dial:  dialGRPC,
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
	}
}

func dialGRPC(cfg *config.Config) (securityClient, error) {
	return client.NewGRPCClient(cfg.ServerEndpointAddr)
}

// Run executes the command line args and closes the connection afterwards.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.close()

	root := a.newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// connect resolves the config and dials the server once per App.
func (a *App) connect(configFile string) error {
	if a.client != nil {
		return nil
	}

	cfg, err := config.Load(a.viper, configFile)
	if err != nil {
		return err
	}
	c, err := a.dial(cfg)
	if err != nil {
		return err
	}
	a.config = cfg
	a.client = c
	return nil
}

// callContext bounds a single server call by the configured timeout.
func (a *App) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := config.Config{}
	d.LoadDefaults()
	if a.config != nil && a.config.RequestTimeout > 0 {
		d.RequestTimeout = a.config.RequestTimeout
	}
	return context.WithTimeout(ctx, d.RequestTimeout)
}

func (a *App) close() {
	if a.client != nil {
		_ = a.client.Close()
		a.client = nil
	}
}
