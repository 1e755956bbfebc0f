package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RyanW02/wineventchain/model/events"
)

func TestParseEventXMLSystemFields(t *testing.T) {
	raw := []byte(`
<Event xmlns="http://schemas.microsoft.com/win/2004/08/events/event">
    <System>
        <Provider Name="Microsoft-Windows-Kernel-Power" Guid="{7871afc8-b522-42ab-a77c-40709a08d7e1}" />
        <EventID>130</EventID>
        <TimeCreated SystemTime="2024-02-20T00:55:57.5003944Z" />
        <EventRecordID>71483</EventRecordID>
        <Correlation />
        <Execution ProcessID="4" ThreadID="27912" />
        <Channel>System</Channel>
        <Computer>laptop</Computer>
    </System>
    <EventData>
        <Data Name="SuspendStart">123</Data>
        <Data Name="SuspendEnd">456</Data>
    </EventData>
</Event>
`)

	event, err := ParseEventXML(raw)
	require.NoError(t, err)

	require.Equal(t, events.EventId(130), event.System.EventId)
	require.Equal(t, uint64(71483), event.System.EventRecordId)
	require.Equal(t, "System", event.System.Channel)
	require.Equal(t, "laptop", event.System.Computer)
	require.Nil(t, event.System.Correlation.ActivityId)
	require.NotNil(t, event.System.Execution.ProcessId)
	require.Equal(t, uint64(4), *event.System.Execution.ProcessId)
	require.Equal(t, uint64(27912), *event.System.Execution.ThreadId)

	require.NotNil(t, event.System.Provider.Name)
	require.Equal(t, "Microsoft-Windows-Kernel-Power", *event.System.Provider.Name)
	require.NotNil(t, event.System.Provider.Guid)
	require.Equal(t, "7871afc8-b522-42ab-a77c-40709a08d7e1", event.System.Provider.Guid.String())

	expectedTime := time.Date(2024, time.February, 20, 0, 55, 57, 500394400, time.UTC)
	require.True(t, expectedTime.Equal(event.System.TimeCreated.SystemTime))

	require.Len(t, event.EventData, 2)
	require.Equal(t, "SuspendStart", *event.EventData[0].Name)
	require.Equal(t, "123", *event.EventData[0].Value)
	require.Equal(t, "SuspendEnd", *event.EventData[1].Name)
	require.Equal(t, "456", *event.EventData[1].Value)
}

func TestParseEventXMLCorrelationWithActivityId(t *testing.T) {
	raw := []byte(`
<Event>
    <System>
        <Provider />
        <EventID>5379</EventID>
        <TimeCreated SystemTime="2024-02-20T00:59:00.2324235Z" />
        <EventRecordID>677930</EventRecordID>
        <Correlation ActivityID="{5b3bdff3-35b9-44dd-844d-4e193236c42e}" />
        <Execution ProcessID="3436" ThreadID="32400" />
        <Channel>Security</Channel>
        <Computer>laptop</Computer>
    </System>
    <EventData></EventData>
</Event>
`)

	event, err := ParseEventXML(raw)
	require.NoError(t, err)

	require.NotNil(t, event.System.Correlation.ActivityId)
	require.Equal(t, "5b3bdff3-35b9-44dd-844d-4e193236c42e", event.System.Correlation.ActivityId.String())
	require.Empty(t, event.EventData)
}

func TestParseEventXMLMissingRequiredElementErrors(t *testing.T) {
	cases := map[string]string{
		"missing System": `<Event><EventData></EventData></Event>`,
		"missing Channel": `
<Event>
    <System>
        <Provider />
        <EventID>1</EventID>
        <TimeCreated SystemTime="2024-02-20T00:59:00Z" />
        <EventRecordID>1</EventRecordID>
        <Correlation />
        <Execution />
        <Computer>laptop</Computer>
    </System>
</Event>
`,
		"missing EventRecordID": `
<Event>
    <System>
        <Provider />
        <EventID>1</EventID>
        <TimeCreated SystemTime="2024-02-20T00:59:00Z" />
        <Correlation />
        <Execution />
        <Channel>Application</Channel>
        <Computer>laptop</Computer>
    </System>
</Event>
`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEventXML([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestParseEventXMLDataWithoutTextIsNil(t *testing.T) {
	raw := []byte(`
<Event>
    <System>
        <Provider />
        <EventID>1</EventID>
        <TimeCreated SystemTime="2024-02-20T00:59:00Z" />
        <EventRecordID>1</EventRecordID>
        <Correlation />
        <Execution />
        <Channel>Application</Channel>
        <Computer>laptop</Computer>
    </System>
    <EventData>
        <Data Name="Empty"/>
    </EventData>
</Event>
`)

	event, err := ParseEventXML(raw)
	require.NoError(t, err)
	require.Len(t, event.EventData, 1)
	require.NotNil(t, event.EventData[0].Name)
	require.Equal(t, "Empty", *event.EventData[0].Name)
	require.Nil(t, event.EventData[0].Value)
}
