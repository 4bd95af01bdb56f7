package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mjpetersen/pipool-controller/internal/store"
)

func main() {
	var dbPath, command, sensorName string
	var limit int
	flag.StringVar(&dbPath, "db", "pipool.db", "Path to the SQLite database file")
	flag.StringVar(&command, "cmd", "", "Command to run: events, runtimes, sensor")
	flag.StringVar(&sensorName, "sensor", "", "Sensor name for the sensor command (in_to_heater, out_from_heater, temp_ambient, cpu_temp)")
	flag.IntVar(&limit, "limit", 20, "Number of rows to show")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		printUsage()
		os.Exit(0)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Printf("failed to open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer st.Close()

	switch command {
	case "events":
		err = printEvents(st, limit)
	case "runtimes":
		err = printRuntimes(st, limit)
	case "sensor":
		if sensorName == "" {
			fmt.Println("Error: -sensor is required for the sensor command")
			os.Exit(1)
		}
		err = printSensor(st, sensorName, limit)
	default:
		fmt.Println("Invalid command")
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("command %s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("\nUsage of pipoolctl:")
	fmt.Println("  -db string\tPath to the SQLite database file (default 'pipool.db')")
	fmt.Println("  -cmd string\tCommand to run: events, runtimes, sensor")
	fmt.Println("  -sensor string\tSensor name for the sensor command")
	fmt.Println("  -limit int\tNumber of rows to show (default 20)")
	fmt.Println("  -help\tShow this help message")
}

func printEvents(st *store.Store, limit int) error {
	events, err := st.RecentEvents(limit)
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Printf("%s  %-28s %s -> %s  %v\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Name, e.From, e.To, e.Payload)
	}
	return nil
}

func printRuntimes(st *store.Store, limit int) error {
	runtimes, err := st.RecentRuntimes(limit)
	if err != nil {
		return err
	}
	for _, r := range runtimes {
		fmt.Printf("%s  %-10s started %s  ran %s\n", r.StartWall.Format("2006-01-02 15:04:05"), r.Topic, r.StartWall.Format("15:04:05"), r.Elapsed)
	}
	return nil
}

func printSensor(st *store.Store, name string, limit int) error {
	readings, err := st.RecentSensors(name, limit)
	if err != nil {
		return err
	}
	for _, r := range readings {
		fmt.Printf("%s  %-16s %.2f\n", r.Wall.Format("2006-01-02 15:04:05"), r.Name, r.Value)
	}
	return nil
}
