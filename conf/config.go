package conf

/*
   This package wraps viper to handle configuration for the bix app.

   Local environments read a local.env file from a shared directory and fall
   back to process environment variables for anything the file does not
   track. Deployed environments (PROD/TEST/DEV) rely on the environment
   alone until their config drop location is provisioned.

   Assumptions:
   1. The configuration file is an env file.
   2. The configuration file, once made available to the application, stays
      immutable for the uptime of the application (exception is test).
*/

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

// An instance of the viper struct containing the conf information. Only made
// accessible through public functions GetEnv, SetEnv, etc.
var envVars viper.Viper

const (
	configgood    uint8 = 0
	configbad     uint8 = 1
	noconfigfound uint8 = 2
)

var state uint8 = configgood

// setup is called once by init to read and parse the config file.
func setup(dir string) *viper.Viper {
	var v = viper.New()
	v.SetConfigName("local")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	// Viper is lazy, do the read and parse of the config file
	var err = v.ReadInConfig()

	if err != nil {
		state = configbad
	}

	return v
}

func init() {
	// Possible config file locations: local and PROD/DEV/TEST respectively.
	var locationSlice = [2]string{
		"/go/src/github.com/caresuite/bix-app/shared_files/decrypted",
		"/go/src/github.com/caresuite/bix-app/shared_files/encrypted", // Placeholder until deployed config drop exists
	}

	if success, loc := findEnv(locationSlice[:]); success {
		envVars = *setup(loc)
	} else {
		state = noconfigfound
	}
}

// findEnv determines which config drop location, if any, holds a local.env.
func findEnv(location []string) (bool, string) {
	if _, err := os.Stat(location[0] + "/local.env"); err == nil {
		return true, location[0]
	}

	if len(location) == 1 {
		return false, ""
	}

	return findEnv(location[1:])
}

// GetEnv retrieves the value stored in conf. If it does not exist, the
// process environment is consulted and the value copied into conf to avoid
// repeated OS calls. Returns "" when the key is set nowhere.
func GetEnv(key string) string {
	if state == configgood {
		var value = envVars.GetString(key)
		var b bool

		if value == "" {
			value, b = os.LookupEnv(key)

			if b {
				test := &testing.T{}
				var _ = SetEnv(test, key, value)
			}
		}

		return value
	}

	return os.Getenv(key)
}

// LookupEnv augments os.LookupEnv to look in the viper struct first.
func LookupEnv(key string) (string, bool) {
	if state == configgood {
		if value := envVars.Get(key); value != nil && value != "" {
			return value.(string), true
		}

		if v, exist := os.LookupEnv(key); exist {
			test := &testing.T{}
			var _ = SetEnv(test, key, v)
			return v, exist
		}

		return "", false
	}

	return os.LookupEnv(key)
}

// SetEnv adds key values into conf. This function should only be used either
// in this package itself or in testing. The protect parameter is *testing.T
// to ensure developers knowingly use it in the appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {
	var err error

	if state == configgood {
		envVars.Set(key, value)
	} else {
		err = os.Setenv(key, value)
	}

	return err
}

// UnsetEnv "unsets" a variable. Like SetEnv, this should only be used either
// in this package itself or in testing.
func UnsetEnv(protect *testing.T, key string) error {
	var err error

	if state == configgood {
		envVars.Set(key, "")
	}

	// GetEnv copies process env values into conf, so clear both places.
	err = os.Unsetenv(key)

	return err
}
