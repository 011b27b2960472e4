package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joshuafuller/dgram/internal/driver"
	"github.com/joshuafuller/dgram/receiver"
	"github.com/joshuafuller/dgram/sender"
)

type multicastCmd struct {
	Group        string        `help:"Multicast group address." default:"${group}" env:"DGRAM_GROUP"`
	Port         int           `help:"Destination UDP port." default:"${multicast_port}" env:"DGRAM_PORT"`
	TTL          int           `name:"ttl" help:"Multicast TTL: router hops a datagram may cross." default:"${ttl}" env:"DGRAM_TTL"`
	Interface    string        `help:"Send through this network interface." env:"DGRAM_INTERFACE"`
	Loopback     bool          `help:"Deliver to receivers on this host too." default:"true" negatable:"" env:"DGRAM_LOOPBACK"`
	WriteTimeout time.Duration `help:"Give up on a blocked send after this long (0 = never)." env:"DGRAM_WRITE_TIMEOUT"`
}

func (c *multicastCmd) Run(e *env) error {
	dest, err := sender.MulticastDestination(c.Group, c.Port)
	if err != nil {
		return err
	}

	opts := []sender.Option{
		sender.WithTTL(c.TTL),
		sender.WithLoopback(c.Loopback),
		sender.WithWriteTimeout(c.WriteTimeout),
		sender.WithLogger(e.logger),
		sender.WithMetrics(e.registry),
	}
	if c.Interface != "" {
		opts = append(opts, sender.WithInterface(c.Interface))
	}

	s, err := sender.New(dest, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintf(e.out, "Sending to multicast group %s (ttl %d). Ctrl+D to stop.\n", dest, c.TTL)
	st, err := driver.Interactive(e.ctx, s, e.in, e.out, e.logger)
	logStats(e.logger, st)
	return err
}

type unicastCmd struct {
	Address      string        `help:"Destination host or IP address." required:"" env:"DGRAM_ADDRESS"`
	Port         int           `help:"Destination UDP port." default:"${unicast_port}" env:"DGRAM_PORT"`
	Message      string        `help:"Payload sent on every tick." default:"${message}" env:"DGRAM_MESSAGE"`
	Interval     time.Duration `help:"Time between sends." default:"${interval}" env:"DGRAM_INTERVAL"`
	Count        int           `help:"Stop after this many sends (0 = until interrupted)." default:"0" env:"DGRAM_COUNT"`
	WriteTimeout time.Duration `help:"Give up on a blocked send after this long (0 = never)." env:"DGRAM_WRITE_TIMEOUT"`
}

func (c *unicastCmd) Run(e *env) error {
	dest, err := sender.UnicastDestination(c.Address, c.Port)
	if err != nil {
		return err
	}

	s, err := sender.New(dest,
		sender.WithWriteTimeout(c.WriteTimeout),
		sender.WithLogger(e.logger),
		sender.WithMetrics(e.registry),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintf(e.out, "Sending messages to %s ...\n", dest)
	st, err := driver.Periodic(e.ctx, s, driver.PeriodicConfig{
		Payload:  []byte(c.Message),
		Interval: c.Interval,
		Count:    c.Count,
	}, e.out, e.logger)
	logStats(e.logger, st)
	return err
}

type listenCmd struct {
	Address   string `help:"Address to bind, or a multicast group to join." default:"${group}" env:"DGRAM_ADDRESS"`
	Port      int    `help:"UDP port to listen on." default:"${multicast_port}" env:"DGRAM_PORT"`
	Interface string `help:"Join the multicast group on this interface." env:"DGRAM_INTERFACE"`
	Count     int    `help:"Exit after this many datagrams (0 = until interrupted)." default:"0" env:"DGRAM_COUNT"`
}

func (c *listenCmd) Run(e *env) error {
	opts := []receiver.Option{
		receiver.WithLogger(e.logger),
		receiver.WithMetrics(e.registry),
	}
	if c.Interface != "" {
		opts = append(opts, receiver.WithInterface(c.Interface))
	}

	r, err := receiver.New(e.ctx, c.Address, c.Port, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(e.out, "Listening on %s ...\n", r)
	_, err = driver.Listen(e.ctx, r, e.out, c.Count, e.logger)
	return err
}

func logStats(logger *zap.Logger, st driver.Stats) {
	logger.Info("sender finished",
		zap.Int("sent", st.Sent),
		zap.Int("failed", st.Failed),
		zap.Int("bytes", st.Bytes),
	)
}
