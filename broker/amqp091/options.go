// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp091

import (
	"crypto/tls"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default values.
const (
	DefaultHost        = "localhost"
	DefaultPort        = 5672
	DefaultTLSPort     = 5671
	DefaultDialTimeout = 10 * time.Second
	DefaultHeartbeat   = 60 * time.Second
)

// Options configures the broker connection.
type Options struct {
	// Connection
	URL         string      // Full AMQP URL (overrides Hosts/Port/Username/Password/Vhost)
	Hosts       []string    // Broker hosts, tried in order; "host" or "host:port"
	Port        int         // Port used for hosts without one
	Username    string      // Username for PLAIN auth
	Password    string      // Password for PLAIN auth
	Vhost       string      // Virtual host (default "/")
	TLSConfig   *tls.Config // TLS configuration (nil for plain TCP)
	DialTimeout time.Duration
	Heartbeat   time.Duration
}

// NewOptions creates Options with sensible defaults.
func NewOptions() *Options {
	return &Options{
		Hosts:       []string{DefaultHost},
		Port:        DefaultPort,
		Username:    "guest",
		Password:    "guest",
		Vhost:       "/",
		DialTimeout: DefaultDialTimeout,
		Heartbeat:   DefaultHeartbeat,
	}
}

// SetURL sets a full AMQP URL.
func (o *Options) SetURL(u string) *Options {
	o.URL = u
	return o
}

// SetHosts sets the broker hosts.
func (o *Options) SetHosts(hosts ...string) *Options {
	o.Hosts = hosts
	return o
}

// SetPort sets the default port.
func (o *Options) SetPort(port int) *Options {
	o.Port = port
	return o
}

// SetCredentials sets username and password.
func (o *Options) SetCredentials(username, password string) *Options {
	o.Username = username
	o.Password = password
	return o
}

// SetVhost sets the virtual host.
func (o *Options) SetVhost(vhost string) *Options {
	o.Vhost = vhost
	return o
}

// SetTLSConfig sets TLS configuration.
func (o *Options) SetTLSConfig(cfg *tls.Config) *Options {
	o.TLSConfig = cfg
	return o
}

// SetDialTimeout sets the dial timeout.
func (o *Options) SetDialTimeout(d time.Duration) *Options {
	o.DialTimeout = d
	return o
}

// SetHeartbeat sets the heartbeat interval.
func (o *Options) SetHeartbeat(d time.Duration) *Options {
	o.Heartbeat = d
	return o
}

// Validate checks the options for errors.
func (o *Options) Validate() error {
	if o.URL != "" {
		return nil
	}
	if len(o.Hosts) == 0 {
		return ErrNoAddress
	}
	for _, h := range o.Hosts {
		if strings.TrimSpace(h) == "" {
			return ErrNoAddress
		}
	}
	if o.Port < 0 || o.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// dialURLs returns one URL per configured host.
func (o *Options) dialURLs() []string {
	if o.URL != "" {
		return []string{o.URL}
	}

	scheme := "amqp"
	port := o.Port
	if o.TLSConfig != nil {
		scheme = "amqps"
		if port == 0 {
			port = DefaultTLSPort
		}
	}
	if port == 0 {
		port = DefaultPort
	}

	vhost := strings.TrimPrefix(o.Vhost, "/")
	urls := make([]string, 0, len(o.Hosts))
	for _, host := range o.Hosts {
		host = strings.TrimSpace(host)
		if _, _, err := net.SplitHostPort(host); err != nil {
			host = net.JoinHostPort(host, strconv.Itoa(port))
		}
		u := &url.URL{
			Scheme: scheme,
			Host:   host,
			Path:   "/" + vhost,
		}
		if o.Username != "" {
			u.User = url.UserPassword(o.Username, o.Password)
		}
		urls = append(urls, u.String())
	}
	return urls
}
