package main

import (
	"context"
	"errors"
	"os"

	"github.com/function61/gokit/ezhttp"
	"github.com/function61/gokit/jsonfile"
	"github.com/function61/portstack/pkg/portainerclient"
)

const conffileFilename = "portstackfile.json"

// connection details. the file is optional - it exists so CI doesn't have to
// put the password on argv. flags override whatever the file provides.
type Conffile struct {
	Url      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
	Endpoint string `json:"endpoint"`
	Insecure bool   `json:"insecure"`
}

var conn Conffile // filled from flags

func readConf() (*Conffile, error) {
	conf := &Conffile{}

	if _, err := os.Stat(conffileFilename); err == nil {
		if err := jsonfile.Read(conffileFilename, conf, true); err != nil {
			return nil, err
		}
	}

	if conn.Url != "" {
		conf.Url = conn.Url
	}
	if conn.Username != "" {
		conf.Username = conn.Username
	}
	if conn.Password != "" {
		conf.Password = conn.Password
	}
	if conn.Endpoint != "" {
		conf.Endpoint = conn.Endpoint
	}
	if conn.Insecure {
		conf.Insecure = true
	}

	if conf.Url == "" {
		return nil, errors.New("Portainer --url not given")
	}
	if conf.Username == "" || conf.Password == "" {
		return nil, errors.New("--user and --password are required")
	}

	return conf, nil
}

func makeAuthenticatedClient(ctx context.Context) (*portainerclient.Client, *Conffile, error) {
	conf, err := readConf()
	if err != nil {
		return nil, nil, err
	}

	portainer := portainerclient.New(conf.Url, conf.Insecure)

	authCtx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	if err := portainer.Auth(authCtx, conf.Username, conf.Password); err != nil {
		return nil, nil, err
	}

	return portainer, conf, nil
}
