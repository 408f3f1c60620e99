package config

import (
	"net"
	neturl "net/url"
	"strconv"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// DSNValue is the connection string handed to the configured driver. An
// explicit dsn or url wins; otherwise it is built from the normalised fields.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Driver {
	case DriverSQLite:
		return c.Path
	default:
		if c.URL != "" {
			return c.URL
		}
		return c.mysqlConfig().FormatDSN()
	}
}

func (c DatabaseRuntimeConfig) mysqlConfig() *mysqlDriver.Config {
	mc := mysqlDriver.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Name
	mc.ParseTime = c.ParseTime
	if loc, err := time.LoadLocation(c.Loc); err == nil {
		mc.Loc = loc
	} else {
		mc.Loc = time.Local
	}
	mc.Params = map[string]string{"charset": c.Charset}
	for k, v := range c.Params {
		mc.Params[k] = v
	}
	return mc
}

// URLValue is the go-redis URL for the configured server.
func (c RedisRuntimeConfig) URLValue() string {
	if c.URL != "" {
		return c.URL
	}
	db := c.DB
	if db < 0 {
		db = defaultRedisDB
	}
	u := neturl.URL{
		Scheme: c.Scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + strconv.Itoa(db),
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = neturl.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = neturl.User(c.Username)
	case c.Password != "":
		u.User = neturl.UserPassword("", c.Password)
	}
	if len(c.Params) > 0 {
		q := neturl.Values{}
		for k, v := range c.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
