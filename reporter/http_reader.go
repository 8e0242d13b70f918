// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
)

type HttpReader struct {
	serverIP   string // listen ip
	serverPort string // listen port
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return &HttpReader{
		serverIP:   serverIP,
		serverPort: serverPort,
	}
}

// get returns the status code and the body of the response.
func (hr *HttpReader) get(route string, query url.Values) (int, string, error) {
	u := "http://" + hr.serverIP + ":" + hr.serverPort + route
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := http.Get(u)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	// Read the response body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}

	// Convert the body to a string
	return resp.StatusCode, string(body), nil
}

func (hr *HttpReader) GetHello() (string, error) {
	_, body, err := hr.get(ROUTE_HELLO, nil)
	return body, err
}

func (hr *HttpReader) GetTransfer(id uint64) (int, string, error) {
	return hr.get(ROUTE_TRANSFER, url.Values{"id": {strconv.FormatUint(id, 10)}})
}

func (hr *HttpReader) GetTransfers(status string) (int, string, error) {
	return hr.get(ROUTE_TRANSFERS, url.Values{"status": {status}})
}

func (hr *HttpReader) GetValidator(principal string) (int, string, error) {
	return hr.get(ROUTE_VALIDATOR, url.Values{"principal": {principal}})
}

func (hr *HttpReader) GetToken(symbol string) (int, string, error) {
	return hr.get(ROUTE_TOKEN, url.Values{"symbol": {symbol}})
}

func (hr *HttpReader) GetGovernance() (int, string, error) {
	return hr.get(ROUTE_GOVERNANCE, nil)
}

func (hr *HttpReader) GetRelay(id uint64) (int, string, error) {
	return hr.get(ROUTE_RELAY, url.Values{"id": {strconv.FormatUint(id, 10)}})
}

func (hr *HttpReader) GetBalances(account string) (int, string, error) {
	return hr.get(ROUTE_BALANCES, url.Values{"account": {account}})
}
