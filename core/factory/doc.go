// Package factory instantiates pluggable components, such as metrics sinks
// and job history stores, from configuration. A component is selected by a
// type string and configured by a map of raw settings that its factory
// decodes with Decode.
//
//	var stores = factory.NewRegistry[history.Store]()
//	_ = stores.Register("sqlite", func(conf map[string]any) (history.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return history.NewSQLiteStore(c.Path)
//	})
//	s, err := stores.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "jobs.db"}})
package factory
