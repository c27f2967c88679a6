package util

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/factoryccu/core/model"
)

// Simulator plays modules and vehicles on a real broker. Every order is
// answered with a FINISHED state report.
type Simulator struct {
	cli paho.Client
	// NodeModules maps layout node ids to the module docked there.
	NodeModules map[string]string

	mu      sync.Mutex
	handled int
}

// NewSimulator connects a simulator client to broker.
func NewSimulator(broker string, nodeModules map[string]string) (*Simulator, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(fmt.Sprintf("sim-%d", time.Now().UnixNano()))
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	s := &Simulator{cli: cli, NodeModules: nodeModules}
	if token := cli.Subscribe("module/v1/ff/+/order", 2, s.onModuleCommand); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := cli.Subscribe("fts/v1/ff/+/order", 2, s.onVehicleOrder); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return s, nil
}

// Handled returns the number of orders answered so far.
func (s *Simulator) Handled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handled
}

// Publish sends v as JSON on topic.
func (s *Simulator) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := s.cli.Publish(topic, 2, false, payload)
	token.Wait()
	return token.Error()
}

// publishAsync is used from message callbacks, which must not wait on tokens.
func (s *Simulator) publishAsync(topic string, v any) {
	payload, _ := json.Marshal(v)
	s.cli.Publish(topic, 2, false, payload)
	s.mu.Lock()
	s.handled++
	s.mu.Unlock()
}

// ConnectModule reports a module online and idle.
func (s *Simulator) ConnectModule(serial string, loads ...model.ModuleLoad) error {
	if err := s.Publish("module/v1/ff/"+serial+"/connection", model.ConnectionReport{SerialNumber: serial, ConnectionState: model.ConnectionOnline, Timestamp: time.Now()}); err != nil {
		return err
	}
	return s.Publish("module/v1/ff/"+serial+"/state", model.ModuleStateReport{SerialNumber: serial, Loads: loads, Timestamp: time.Now()})
}

// ConnectVehicle reports a vehicle online and idle at node.
func (s *Simulator) ConnectVehicle(serial, node string) error {
	if err := s.Publish("fts/v1/ff/"+serial+"/connection", model.ConnectionReport{SerialNumber: serial, ConnectionState: model.ConnectionOnline, Timestamp: time.Now()}); err != nil {
		return err
	}
	return s.Publish("fts/v1/ff/"+serial+"/state", model.VehicleStateReport{
		SerialNumber: serial,
		LastNodeID:   node,
		BatteryState: &model.BatteryState{Percentage: 90},
		Timestamp:    time.Now(),
	})
}

func (s *Simulator) onModuleCommand(_ paho.Client, m paho.Message) {
	var c model.ModuleCommand
	if err := json.Unmarshal(m.Payload(), &c); err != nil {
		return
	}
	s.publishAsync("module/v1/ff/"+c.SerialNumber+"/state", model.ModuleStateReport{
		SerialNumber: c.SerialNumber,
		OrderID:      c.OrderID,
		ActionState:  &model.ModuleActionState{ID: c.Action.ID, Command: c.Action.Command, State: model.ActionFinished},
		Timestamp:    time.Now(),
	})
}

func (s *Simulator) onVehicleOrder(_ paho.Client, m paho.Message) {
	var o model.VehicleOrder
	if err := json.Unmarshal(m.Payload(), &o); err != nil || len(o.Nodes) == 0 {
		return
	}
	last := o.Nodes[len(o.Nodes)-1]
	rep := model.VehicleStateReport{
		SerialNumber:           o.SerialNumber,
		OrderID:                o.OrderID,
		LastNodeID:             last.ID,
		LastModuleSerialNumber: s.NodeModules[last.ID],
		BatteryState:           &model.BatteryState{Percentage: 90},
		Timestamp:              time.Now(),
	}
	for _, a := range last.Actions {
		if a.Type == model.ActionDock {
			rep.ActionState = &model.VehicleActionState{ID: a.ID, Type: a.Type, State: model.ActionFinished}
		}
	}
	s.publishAsync("fts/v1/ff/"+o.SerialNumber+"/state", rep)
}

// Await blocks until a message arrives on topic, e.g. a retained snapshot
// proving the controller has subscribed.
func (s *Simulator) Await(topic string, timeout time.Duration) error {
	got := make(chan struct{}, 1)
	token := s.cli.Subscribe(topic, 1, func(paho.Client, paho.Message) {
		select {
		case got <- struct{}{}:
		default:
		}
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer s.cli.Unsubscribe(topic)
	select {
	case <-got:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("no message on %s after %s", topic, timeout)
	}
}

// Close disconnects the simulator.
func (s *Simulator) Close() { s.cli.Disconnect(100) }
